// Package replica reads casts from a Postgres read replica of hub data.
package replica

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unreplied/internal/domain"
)

//go:embed schema.sql
var schema string

var castColumns = []string{
	"c.hash",
	"c.fid",
	"COALESCE(p.username, '')",
	"COALESCE(p.display_name, '')",
	"COALESCE(p.pfp_url, '')",
	"c.text",
	"c.timestamp",
	"COALESCE(c.parent_hash, '')",
	"COALESCE(c.parent_fid, 0)",
	"c.embeds",
}

// Repository implements the conversation source, cast lister, profile
// resolver and conversation repository ports over pgx.
type Repository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: replica dsn: %v", domain.ErrMisconfigured, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: replica ping: %v", domain.ErrUpstreamUnavailable, err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the tables the repository reads.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Name implements usecases.ConversationSource.
func (r *Repository) Name() string {
	return "replica"
}

func (r *Repository) selectCasts() sq.SelectBuilder {
	return r.sb.Select(castColumns...).
		From("casts c").
		LeftJoin("profiles p ON p.fid = c.fid").
		Where("c.deleted_at IS NULL")
}

// FetchCast implements usecases.ConversationSource.
func (r *Repository) FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error) {
	query, args, err := r.selectCasts().Where(sq.Eq{"c.hash": domain.NormalizeHash(id.Hash)}).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanCast(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: cast %s", domain.ErrNotFound, id.Hash)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch cast: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &c, nil
}

// FetchDirectReplies implements usecases.ConversationSource. Replies come
// oldest first.
func (r *Repository) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	b := r.selectCasts().
		Where(sq.Eq{"c.parent_hash": domain.NormalizeHash(parent.Hash)}).
		OrderBy("c.timestamp ASC", "c.hash ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.queryCasts(ctx, b)
}

// ListCastsByAuthor implements usecases.CastLister with keyset pagination
// over (timestamp, hash), newest first.
func (r *Repository) ListCastsByAuthor(ctx context.Context, q domain.ListQuery) (domain.CastPage, error) {
	b := r.listQuery(q)
	if q.Cursor != "" {
		ts, hash, err := decodeCursor(q.Cursor)
		if err != nil {
			return domain.CastPage{}, err
		}
		b = b.Where("(c.timestamp, c.hash) < (?, ?)", ts, hash)
	}

	casts, err := r.queryCasts(ctx, b)
	if err != nil {
		return domain.CastPage{}, err
	}
	page := domain.CastPage{Casts: casts}
	if q.Limit > 0 && len(casts) > q.Limit {
		page.Casts = casts[:q.Limit]
		page.NextCursor = encodeCursor(page.Casts[q.Limit-1])
	}
	return page, nil
}

func (r *Repository) listQuery(q domain.ListQuery) sq.SelectBuilder {
	b := r.selectCasts().
		Where(sq.Eq{"c.fid": q.FID}).
		Where("c.parent_hash IS NULL").
		OrderBy("c.timestamp DESC", "c.hash DESC")
	if !q.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"c.timestamp": q.Since})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit) + 1)
	}
	return b
}

// Profiles implements usecases.ProfileResolver.
func (r *Repository) Profiles(ctx context.Context, fids []uint64) (map[uint64]domain.Profile, error) {
	out := make(map[uint64]domain.Profile, len(fids))
	if len(fids) == 0 {
		return out, nil
	}
	query, args, err := r.sb.Select("fid", "username", "display_name", "pfp_url").
		From("profiles").
		Where(sq.Eq{"fid": fids}).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: profiles: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Profile
		var fid int64
		if err := rows.Scan(&fid, &p.Username, &p.DisplayName, &p.AvatarURL); err != nil {
			return nil, err
		}
		p.FID = uint64(fid)
		out[p.FID] = p
	}
	return out, rows.Err()
}

// UnrepliedConversations implements usecases.ConversationRepository: root
// casts by fid that have direct replies from others none of which the
// author answered, most recently replied first.
func (r *Repository) UnrepliedConversations(ctx context.Context, fid uint64, limit int) (domain.ConversationList, error) {
	query, args, err := r.conversationsQuery(fid, limit).ToSql()
	if err != nil {
		return domain.ConversationList{}, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.ConversationList{}, fmt.Errorf("%w: conversations: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	list := domain.ConversationList{Conversations: []domain.ConversationSummary{}}
	for rows.Next() {
		var (
			s           domain.ConversationSummary
			firstAuthor int64
			total       int
		)
		c, err := scanCast(rows, &s.ReplyCount, &firstAuthor, &s.FirstReplyTime, &total)
		if err != nil {
			return domain.ConversationList{}, err
		}
		s.Cast = c
		s.FirstReplyAuthor = uint64(firstAuthor)
		s.FirstReplyTime = s.FirstReplyTime.UTC()
		list.Conversations = append(list.Conversations, s)
		list.TotalCount = total
	}
	if err := rows.Err(); err != nil {
		return domain.ConversationList{}, fmt.Errorf("%w: conversations: %v", domain.ErrUpstreamUnavailable, err)
	}
	return list, nil
}

func (r *Repository) conversationsQuery(fid uint64, limit int) sq.SelectBuilder {
	cols := append(append([]string{}, castColumns...),
		"r.reply_count", "r.first_reply_author", "r.first_reply_time", "count(*) OVER ()")
	return r.sb.Select(cols...).
		From("casts c").
		LeftJoin("profiles p ON p.fid = c.fid").
		JoinClause(`JOIN LATERAL (
			SELECT count(*) AS reply_count,
			       (array_agg(x.fid ORDER BY x.timestamp, x.hash))[1] AS first_reply_author,
			       min(x.timestamp) AS first_reply_time
			FROM casts x
			WHERE x.parent_hash = c.hash AND x.fid <> c.fid AND x.deleted_at IS NULL
		) r ON r.reply_count > 0`).
		Where(sq.Eq{"c.fid": fid}).
		Where("c.parent_hash IS NULL").
		Where("c.deleted_at IS NULL").
		Where(`NOT EXISTS (
			SELECT 1 FROM casts a
			JOIN casts d ON a.parent_hash = d.hash
			WHERE d.parent_hash = c.hash AND a.fid = c.fid AND a.deleted_at IS NULL
		)`).
		OrderBy("r.first_reply_time DESC").
		Limit(uint64(limit))
}

func (r *Repository) queryCasts(ctx context.Context, b sq.SelectBuilder) ([]domain.Cast, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query casts: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	casts := make([]domain.Cast, 0)
	for rows.Next() {
		c, err := scanCast(rows)
		if err != nil {
			return nil, err
		}
		casts = append(casts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query casts: %v", domain.ErrUpstreamUnavailable, err)
	}
	return casts, nil
}

// scanCast reads castColumns followed by extra destinations.
func scanCast(row pgx.Row, extra ...any) (domain.Cast, error) {
	var (
		c         domain.Cast
		fid       int64
		parentFID int64
		ts        time.Time
		embeds    []byte
	)
	dest := append([]any{
		&c.Hash, &fid, &c.Username, &c.DisplayName, &c.AvatarURL,
		&c.Text, &ts, &c.ParentHash, &parentFID, &embeds,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Cast{}, err
	}
	c.AuthorFID = uint64(fid)
	c.ParentFID = uint64(parentFID)
	c.Timestamp = ts.UTC()
	if len(embeds) > 0 {
		if err := json.Unmarshal(embeds, &c.Embeds); err != nil {
			return domain.Cast{}, fmt.Errorf("decoding embeds of %s: %w", c.Hash, err)
		}
	}
	return c, nil
}
