package moderation

import (
	"testing"

	"ceniza-bot/model"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestCanManage(t *testing.T) {
	kick := int64(discordgo.PermissionKickMembers)

	tests := []struct {
		name      string
		requester *fakeMember
		self      *fakeMember
		target    *fakeMember
		want      Decision
	}{
		{
			name:      "moderator above target",
			requester: newMod(),
			self:      newBot(),
			target:    newUser(),
			want:      Decision{OK: true},
		},
		{
			name:      "requester lacks permission",
			requester: &fakeMember{id: "r", perms: discordgo.PermissionManageNicknames, top: 9},
			self:      newBot(),
			target:    newUser(),
			want:      Decision{Reason: ReasonRequesterPermission},
		},
		{
			name:      "bot lacks permission",
			requester: newMod(),
			self:      &fakeMember{id: botID, perms: discordgo.PermissionManageRoles, top: 10},
			target:    newUser(),
			want:      Decision{Reason: ReasonBotPermission},
		},
		{
			name:      "permission is checked before self target",
			requester: &fakeMember{id: userID, top: 1},
			self:      newBot(),
			target:    newUser(),
			want:      Decision{Reason: ReasonRequesterPermission},
		},
		{
			name:      "admin cannot target themselves",
			requester: newAdmin(),
			self:      newBot(),
			target:    newAdmin(),
			want:      Decision{Reason: ReasonSelfTarget},
		},
		{
			name:      "bot equal to target",
			requester: newAdmin(),
			self:      newBot(),
			target:    &fakeMember{id: "t", top: 10},
			want:      Decision{Reason: ReasonBotHierarchy},
		},
		{
			name:      "owner is above the bot",
			requester: newAdmin(),
			self:      newBot(),
			target:    newOwner(),
			want:      Decision{Reason: ReasonBotHierarchy},
		},
		{
			name:      "moderator equal to target",
			requester: newMod(),
			self:      newBot(),
			target:    &fakeMember{id: "t", top: 5},
			want:      Decision{Reason: ReasonRequesterHierarchy},
		},
		{
			name:      "admin skips requester hierarchy",
			requester: newAdmin(),
			self:      newBot(),
			target:    &fakeMember{id: "t", top: 7},
			want:      Decision{OK: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanManage(tt.requester, tt.self, tt.target, kick))
		})
	}
}

func TestCanManageNeverAllowsSelfTarget(t *testing.T) {
	for _, typ := range model.ActionTypes {
		for _, m := range []*fakeMember{newMod(), newAdmin(), newOwner()} {
			d := CanManage(m, newBot(), m, RequiredPermission(typ))
			assert.False(t, d.OK, "%s on self by %s", typ, m.name)
		}
	}
}

func TestCanManageRole(t *testing.T) {
	bot := newBot()
	assert.True(t, CanManageRole(bot, &fakeRole{id: "r", pos: 9}).OK)
	assert.Equal(t, ReasonRoleHierarchy, CanManageRole(bot, &fakeRole{id: "r", pos: 10}).Reason)
	assert.Equal(t, ReasonRoleHierarchy, CanManageRole(bot, &fakeRole{id: "r", pos: 15}).Reason)
	assert.Equal(t, ReasonRoleManaged, CanManageRole(bot, &fakeRole{id: "r", pos: 1, managed: true}).Reason)
}

func TestRequiredPermission(t *testing.T) {
	assert.EqualValues(t, discordgo.PermissionKickMembers, RequiredPermission(model.ActionKick))
	assert.EqualValues(t, discordgo.PermissionBanMembers, RequiredPermission(model.ActionBan))
	assert.EqualValues(t, discordgo.PermissionModerateMembers, RequiredPermission(model.ActionTimeout))
	assert.EqualValues(t, discordgo.PermissionManageNicknames, RequiredPermission(model.ActionNicknameSet))
	assert.EqualValues(t, discordgo.PermissionManageRoles, RequiredPermission(model.ActionRoleAdd))
	assert.EqualValues(t, discordgo.PermissionManageRoles, RequiredPermission(model.ActionRoleRemove))
}

func TestHasAnyModPermission(t *testing.T) {
	assert.True(t, HasAnyModPermission(newMod()))
	assert.True(t, HasAnyModPermission(newAdmin()))
	assert.False(t, HasAnyModPermission(newUser()))
	assert.True(t, HasAnyModPermission(&fakeMember{perms: discordgo.PermissionManageNicknames}))
}
