package platform

import (
	"math"

	"github.com/bwmarrin/discordgo"
)

// Member adapts a guild member. Permissions and position are computed from
// the guild's roles at resolution time.
type Member struct {
	m     *discordgo.Member
	perms int64
	top   int

	// set when the bot could act on this member
	manageable bool
	selfPerms  int64
}

func (m *Member) ID() string { return m.m.User.ID }

func (m *Member) DisplayName() string {
	switch {
	case m.m.Nick != "":
		return m.m.Nick
	case m.m.User.GlobalName != "":
		return m.m.User.GlobalName
	default:
		return m.m.User.Username
	}
}

func (m *Member) Permissions() int64   { return m.perms }
func (m *Member) HighestPosition() int { return m.top }
func (m *Member) Manageable() bool     { return m.manageable }

func (m *Member) Kickable() bool {
	return m.manageable && hasPerm(m.selfPerms, discordgo.PermissionKickMembers)
}

func (m *Member) Bannable() bool {
	return m.manageable && hasPerm(m.selfPerms, discordgo.PermissionBanMembers)
}

// Moderatable also excludes administrators, who cannot be timed out.
func (m *Member) Moderatable() bool {
	return m.manageable && hasPerm(m.selfPerms, discordgo.PermissionModerateMembers) &&
		m.perms&discordgo.PermissionAdministrator == 0
}

// Raw returns the underlying discordgo member.
func (m *Member) Raw() *discordgo.Member { return m.m }

// Role adapts a guild role.
type Role struct {
	r *discordgo.Role
}

func (r *Role) ID() string    { return r.r.ID }
func (r *Role) Name() string  { return r.r.Name }
func (r *Role) Position() int { return r.r.Position }
func (r *Role) Managed() bool { return r.r.Managed }

func hasPerm(perms, perm int64) bool {
	return perms&discordgo.PermissionAdministrator != 0 || perms&perm == perm
}

// memberPermissions folds @everyone and the member's roles. The owner and
// administrators get every permission.
func memberPermissions(g *discordgo.Guild, m *discordgo.Member) int64 {
	if m.User != nil && g.OwnerID == m.User.ID {
		return discordgo.PermissionAll
	}
	held := make(map[string]bool, len(m.Roles))
	for _, id := range m.Roles {
		held[id] = true
	}
	var perms int64
	for _, r := range g.Roles {
		if r.ID == g.ID || held[r.ID] {
			perms |= r.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

// highestPosition is the position of the member's top role. The owner sits
// above every role.
func highestPosition(g *discordgo.Guild, m *discordgo.Member) int {
	if m.User != nil && g.OwnerID == m.User.ID {
		return math.MaxInt
	}
	held := make(map[string]bool, len(m.Roles))
	for _, id := range m.Roles {
		held[id] = true
	}
	top := 0
	for _, r := range g.Roles {
		if held[r.ID] && r.Position > top {
			top = r.Position
		}
	}
	return top
}

func newMember(g *discordgo.Guild, m *discordgo.Member) *Member {
	return &Member{m: m, perms: memberPermissions(g, m), top: highestPosition(g, m)}
}

// withSelf fills the capability flags relative to the bot member.
func (m *Member) withSelf(self *Member, ownerID string) *Member {
	if self == nil {
		return m
	}
	m.selfPerms = self.perms
	m.manageable = m.ID() != self.ID() && m.ID() != ownerID && self.top > m.top
	return m
}
