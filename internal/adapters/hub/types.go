package hub

// Wire shapes of the hub HTTP API (JSON rendering of the protobuf messages).

const (
	messageTypeCastAdd = "MESSAGE_TYPE_CAST_ADD"

	userDataTypePfp      = "USER_DATA_TYPE_PFP"
	userDataTypeDisplay  = "USER_DATA_TYPE_DISPLAY"
	userDataTypeUsername = "USER_DATA_TYPE_USERNAME"
)

type hubCastID struct {
	FID  uint64 `json:"fid"`
	Hash string `json:"hash"`
}

type hubEmbed struct {
	URL    string     `json:"url,omitempty"`
	CastID *hubCastID `json:"castId,omitempty"`
}

type hubCastAddBody struct {
	Text         string     `json:"text"`
	Embeds       []hubEmbed `json:"embeds"`
	ParentCastID *hubCastID `json:"parentCastId,omitempty"`
	ParentURL    string     `json:"parentUrl,omitempty"`
}

type hubUserDataBody struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type hubMessageData struct {
	Type         string           `json:"type"`
	FID          uint64           `json:"fid"`
	Timestamp    uint64           `json:"timestamp"`
	CastAddBody  *hubCastAddBody  `json:"castAddBody,omitempty"`
	UserDataBody *hubUserDataBody `json:"userDataBody,omitempty"`
}

type hubMessage struct {
	Data *hubMessageData `json:"data"`
	Hash string          `json:"hash"`
}

type hubMessagesResponse struct {
	Messages      []*hubMessage `json:"messages"`
	NextPageToken string        `json:"nextPageToken"`
}
