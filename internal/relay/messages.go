package relay

import (
	"fmt"
	"strings"

	"github.com/Vovarama1992/openai-chat-relay/internal/settings"
)

const (
	msgMissingAPIKey   = "Please configure an API key first."
	msgQueued          = "⏳ The previous message is still being processed, please wait..."
	msgUpstreamTimeout = "Connection timed out! Please check the HTTP proxy settings."
	msgHistoryReset    = "🗑️ Memory cleared, starting a new topic."
	msgNeedsGroup      = "❌ This command only works in group chats."
	msgNeedsGroupAdmin = "❌ Only the group owner or an admin can do this."
	msgNeedsTarget     = "❌ Please give a user id."
	msgSettingsFailed  = "❌ Could not save the setting, see the server log."

	msgGroupEnabled     = "✅ AI chat is now on for this group."
	msgGroupDisabled    = "🚫 AI chat is now off for this group."
	msgPrivateEnabled   = "✅ Private AI chat is on."
	msgPrivateDisabled  = "🚫 Private AI chat is off."
	msgAllowListModeOn  = "⚪ Switched to allow-list mode: only listed users get replies."
	msgAllowListModeOff = "⚫ Switched to deny-list mode: everyone except denied users gets replies."
)

func msgRateLimited(limit int, windowMinutes int) string {
	return fmt.Sprintf("🚫 You are sending requests too often, please try again later.\n(limit: %d per %d minutes)", limit, windowMinutes)
}

func msgForbiddenWord(word string) string {
	return fmt.Sprintf("⚠️ Your message contains the forbidden word %q and was rejected.", word)
}

func msgUpstreamHTTP(status int) string {
	return fmt.Sprintf("Request failed: %d\nPlease check the server log.", status)
}

func msgUpstreamOther(err error) string {
	return fmt.Sprintf("An error occurred: %v", err)
}

func msgListChanged(senderID string, allowList, added bool) string {
	switch {
	case allowList && added:
		return fmt.Sprintf("✅ User %s added to the private chat allow list.", senderID)
	case allowList:
		return fmt.Sprintf("🚫 User %s removed from the private chat allow list.", senderID)
	case added:
		return fmt.Sprintf("🚫 User %s is now denied.", senderID)
	default:
		return fmt.Sprintf("✅ User %s is no longer denied.", senderID)
	}
}

func bundleTitle(model string) string {
	return fmt.Sprintf("AI reply (%s)", model)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func msgHelp(cfg settings.Settings) string {
	mode := "⚫ deny list"
	if cfg.WhiteListMode {
		mode = "⚪ allow list"
	}
	limit := "off"
	if rl := cfg.RateLimit(); rl.Enabled {
		limit = fmt.Sprintf("%d per %d minutes", rl.Max, int(rl.Window.Minutes()))
	}

	lines := []string{
		"🤖 Chat relay commands",
		"==========================",
		"Basic:",
		fmt.Sprintf("• chat: %s <text>", cfg.Prefix),
	}
	if cfg.PrivateChatWithoutPrefix {
		lines = append(lines, "  (no prefix needed in private chat)")
	}
	lines = append(lines,
		fmt.Sprintf("• reset: %s", cfg.ResetCmd),
		fmt.Sprintf("• help: %s", cfg.HelpCmd),
		"",
		"Admin (masters):",
		"• private chat: #enable private ai / #disable private ai",
		"• group chat: #enable group ai / #disable group ai",
		"• mode: #allowlist mode on / #allowlist mode off",
		"• deny list: #deny <id> / #undeny <id>",
		"• allow list: #allow <id> / #unallow <id>",
		"==========================",
		fmt.Sprintf("model: %s", cfg.EffectiveModel()),
		fmt.Sprintf("mode: %s", mode),
		fmt.Sprintf("queue: %s", onOff(cfg.EnableSequential)),
		fmt.Sprintf("rate limit: %s", limit),
	)
	return strings.Join(lines, "\n")
}
