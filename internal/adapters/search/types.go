package search

// Response shapes of the search-index API.

type apiUser struct {
	FID         uint64 `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

type apiCastID struct {
	FID  uint64 `json:"fid"`
	Hash string `json:"hash"`
}

type apiEmbed struct {
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	CastID   *apiCastID     `json:"cast_id,omitempty"`
}

type apiParentAuthor struct {
	FID uint64 `json:"fid"`
}

type apiCast struct {
	Hash          string           `json:"hash"`
	Author        apiUser          `json:"author"`
	Text          string           `json:"text"`
	Timestamp     string           `json:"timestamp"`
	ParentHash    string           `json:"parent_hash"`
	ParentAuthor  *apiParentAuthor `json:"parent_author"`
	Embeds        []apiEmbed       `json:"embeds"`
	DirectReplies []apiCast        `json:"direct_replies"`
}

type apiNext struct {
	Cursor string `json:"cursor"`
}

type castResponse struct {
	Cast apiCast `json:"cast"`
}

type conversationResponse struct {
	Conversation struct {
		Cast apiCast `json:"cast"`
	} `json:"conversation"`
	Next apiNext `json:"next"`
}

type feedResponse struct {
	Casts []apiCast `json:"casts"`
	Next  apiNext   `json:"next"`
}

type usersResponse struct {
	Users []apiUser `json:"users"`
}
