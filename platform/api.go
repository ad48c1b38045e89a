// Package platform adapts a discordgo session to the moderation core's
// IdentityResolver and ActionExecutor.
package platform

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// API is the subset of Discord the adapters need. Lookups return nil, nil
// for unknown members.
type API interface {
	SelfID() string
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	SearchMembers(ctx context.Context, guildID, query string, limit int) ([]*discordgo.Member, error)
	CachedMembers(guildID string) []*discordgo.Member

	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, days int) error
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error
	Nickname(ctx context.Context, guildID, userID, nickname, reason string) error
	RoleAdd(ctx context.Context, guildID, userID, roleID, reason string) error
	RoleRemove(ctx context.Context, guildID, userID, roleID, reason string) error
}

// SessionAPI implements API over a live session, preferring the state
// cache for reads.
type SessionAPI struct {
	s *discordgo.Session
}

func NewSessionAPI(s *discordgo.Session) *SessionAPI { return &SessionAPI{s: s} }

func opts(ctx context.Context, reason string) []discordgo.RequestOption {
	o := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		o = append(o, discordgo.WithAuditLogReason(reason))
	}
	return o
}

func (a *SessionAPI) SelfID() string {
	if a.s.State != nil && a.s.State.User != nil {
		return a.s.State.User.ID
	}
	return ""
}

func (a *SessionAPI) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if a.s.State != nil {
		if g, err := a.s.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
			return g, nil
		}
	}
	return a.s.Guild(guildID, discordgo.WithContext(ctx))
}

func (a *SessionAPI) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if a.s.State != nil {
		if m, err := a.s.State.Member(guildID, userID); err == nil {
			return m, nil
		}
	}
	m, err := a.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil, nil
	}
	return m, err
}

func (a *SessionAPI) SearchMembers(ctx context.Context, guildID, query string, limit int) ([]*discordgo.Member, error) {
	return a.s.GuildMembersSearch(guildID, query, limit, discordgo.WithContext(ctx))
}

func (a *SessionAPI) CachedMembers(guildID string) []*discordgo.Member {
	if a.s.State == nil {
		return nil
	}
	g, err := a.s.State.Guild(guildID)
	if err != nil {
		return nil
	}
	a.s.State.RLock()
	defer a.s.State.RUnlock()
	return append([]*discordgo.Member(nil), g.Members...)
}

func (a *SessionAPI) Kick(ctx context.Context, guildID, userID, reason string) error {
	return a.s.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (a *SessionAPI) Ban(ctx context.Context, guildID, userID, reason string, days int) error {
	return a.s.GuildBanCreateWithReason(guildID, userID, reason, days, discordgo.WithContext(ctx))
}

func (a *SessionAPI) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	return a.s.GuildMemberTimeout(guildID, userID, until, opts(ctx, reason)...)
}

func (a *SessionAPI) Nickname(ctx context.Context, guildID, userID, nickname, reason string) error {
	return a.s.GuildMemberNickname(guildID, userID, nickname, opts(ctx, reason)...)
}

func (a *SessionAPI) RoleAdd(ctx context.Context, guildID, userID, roleID, reason string) error {
	return a.s.GuildMemberRoleAdd(guildID, userID, roleID, opts(ctx, reason)...)
}

func (a *SessionAPI) RoleRemove(ctx context.Context, guildID, userID, roleID, reason string) error {
	return a.s.GuildMemberRoleRemove(guildID, userID, roleID, opts(ctx, reason)...)
}

func restStatus(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

func isNotFound(err error) bool {
	return err != nil && restStatus(err) == http.StatusNotFound
}

func isForbidden(err error) bool {
	return err != nil && restStatus(err) == http.StatusForbidden
}
