package platform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ceniza-bot/model"
	"ceniza-bot/utils"

	"github.com/agnivade/levenshtein"
	"github.com/bwmarrin/discordgo"
)

const (
	searchLimit         = 10
	searchMaxScore      = 0.35
	cacheMaxScore       = 0.28
	roleNameMaxScore    = 0.28
	minFuzzyQueryLength = 2
)

var (
	mentionIDRe = regexp.MustCompile(`<(?:@!|@&|@|#)(\d+)>`)
	rawIDRe     = regexp.MustCompile(`^\d{16,20}$`)
)

// Resolver implements model.IdentityResolver.
type Resolver struct {
	api API
}

func NewResolver(api API) *Resolver { return &Resolver{api: api} }

var _ model.IdentityResolver = (*Resolver)(nil)

// refID extracts a snowflake from a mention or a bare id.
func refID(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := mentionIDRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	if rawIDRe.MatchString(ref) {
		return ref
	}
	return ""
}

// similarity is the normalized edit distance of query to the closest
// candidate, 0 meaning identical. Empty candidates are ignored.
func similarity(query string, candidates ...string) float64 {
	best := 1.0
	for _, c := range candidates {
		if c == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(query, c)
		denom := max(len([]rune(query)), len([]rune(c)), 1)
		if score := float64(dist) / float64(denom); score < best {
			best = score
		}
	}
	return best
}

func memberNames(m *discordgo.Member) []string {
	names := []string{utils.Normalize(m.Nick)}
	if m.User != nil {
		names = append(names, utils.Normalize(m.User.GlobalName), utils.Normalize(m.User.Username))
	}
	return names
}

func bestMember(query string, members []*discordgo.Member, maxScore float64) *discordgo.Member {
	var best *discordgo.Member
	bestScore := 1.0
	for _, m := range members {
		if m == nil || m.User == nil {
			continue
		}
		if score := similarity(query, memberNames(m)...); score < bestScore {
			best, bestScore = m, score
		}
	}
	if best != nil && bestScore <= maxScore {
		return best
	}
	return nil
}

func (r *Resolver) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	g, err := r.api.Guild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return g, nil
}

func (r *Resolver) selfMember(ctx context.Context, g *discordgo.Guild) (*Member, error) {
	id := r.api.SelfID()
	if id == "" {
		return nil, nil
	}
	m, err := r.api.Member(ctx, g.ID, id)
	if err != nil {
		return nil, fmt.Errorf("fetch bot member: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	return newMember(g, m), nil
}

// Self returns the bot's own member.
func (r *Resolver) Self(ctx context.Context, guildID string) (model.Member, error) {
	g, err := r.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	self, err := r.selfMember(ctx, g)
	if err != nil || self == nil {
		return nil, err
	}
	return self, nil
}

// ResolveMember accepts a mention, an id, or a (fuzzy) display name.
func (r *Resolver) ResolveMember(ctx context.Context, guildID, ref string) (model.Member, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	g, err := r.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	found, err := r.findMember(ctx, g, ref)
	if err != nil || found == nil {
		return nil, err
	}
	self, err := r.selfMember(ctx, g)
	if err != nil {
		return nil, err
	}
	return newMember(g, found).withSelf(self, g.OwnerID), nil
}

func (r *Resolver) findMember(ctx context.Context, g *discordgo.Guild, ref string) (*discordgo.Member, error) {
	if id := refID(ref); id != "" {
		m, err := r.api.Member(ctx, g.ID, id)
		if err != nil {
			return nil, fmt.Errorf("fetch member %s: %w", id, err)
		}
		if m != nil {
			return m, nil
		}
	}

	query := utils.Normalize(ref)
	if len([]rune(query)) < minFuzzyQueryLength {
		return nil, nil
	}
	found, err := r.api.SearchMembers(ctx, g.ID, ref, searchLimit)
	if err == nil {
		if m := bestMember(query, found, searchMaxScore); m != nil {
			return m, nil
		}
	}
	return bestMember(query, r.api.CachedMembers(g.ID), cacheMaxScore), nil
}

// ResolveRole accepts a role mention, an id, or a (fuzzy) role name.
// @everyone never resolves.
func (r *Resolver) ResolveRole(ctx context.Context, guildID, ref string) (model.Role, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	g, err := r.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if id := refID(ref); id != "" {
		for _, role := range g.Roles {
			if role.ID == id && role.ID != g.ID {
				return &Role{r: role}, nil
			}
		}
		return nil, nil
	}

	query := utils.Normalize(ref)
	if query == "" {
		return nil, nil
	}
	var best *discordgo.Role
	bestScore := 1.0
	for _, role := range g.Roles {
		if role.ID == g.ID {
			continue
		}
		if score := similarity(query, utils.Normalize(role.Name)); score < bestScore {
			best, bestScore = role, score
		}
	}
	if best != nil && bestScore <= roleNameMaxScore {
		return &Role{r: best}, nil
	}
	return nil, nil
}
