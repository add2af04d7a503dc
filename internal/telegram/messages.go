package telegram

import "fmt"

// User-facing text, keyed by language. Unknown languages fall back to en.
var messages = map[string]map[string]string{
	"en": {
		"invite":         "Payment received! Your membership is active until %s (UTC).\nJoin the channel with this one-time link:\n%s",
		"invite.pending": "Payment received! Your membership is active until %s (UTC). The invite link could not be created right now; use /resend in a bit.",
		"reward":         "One of your invitees just made their first payment. You earned %d bonus days of membership!",
		"expiry":         "Your membership has expired and you have been removed from the channel. Pick a plan with /plans to come back any time.",
		"reminder":       "Your membership expires in less than %d day(s). Renew with /plans to keep your access.",
		"order":          "Send exactly %s USDT (TRC-20) to:\n%s\n\nThe amount must match to the last digit. Access is granted automatically after confirmation, usually within a few minutes.",
		"status.none":    "You have no active membership. Pick a plan with /plans.",
		"status.active":  "Your membership is active until %s (UTC).",
		"status.pending": "Waiting for your deposit of %s USDT to %s. It is credited automatically after confirmation.",
		"plans":          "Choose a plan:",
		"plan.unknown":   "That plan is not available.",
		"pool.empty":     "No deposit address is available right now, please try again later.",
		"resend.none":    "No active membership found to re-issue an invite for.",
		"error":          "Something went wrong, please try again later.",
		"start":          "Welcome! This bot sells access to the paid channel, settled in USDT (TRC-20).\n\n/plans — buy or extend membership\n/status — check your membership\n/resend — re-send your invite link",
	},
	"zh": {
		"invite":         "已收到付款！您的会员有效期至 %s (UTC)。\n请使用以下一次性链接加入频道：\n%s",
		"invite.pending": "已收到付款！您的会员有效期至 %s (UTC)。邀请链接暂时无法创建，请稍后使用 /resend。",
		"reward":         "您邀请的用户完成了首次付款，您获得了 %d 天会员奖励！",
		"expiry":         "您的会员已到期，已被移出频道。随时可以通过 /plans 续费回来。",
		"reminder":       "您的会员将在 %d 天内到期，请使用 /plans 续费以保留访问权限。",
		"order":          "请向以下地址转账正好 %s USDT (TRC-20)：\n%s\n\n金额必须精确到最后一位。确认后将自动开通，通常几分钟内完成。",
		"status.none":    "您当前没有有效会员。请使用 /plans 选择套餐。",
		"status.active":  "您的会员有效期至 %s (UTC)。",
		"status.pending": "等待您向 %[2]s 转入 %[1]s USDT。确认后将自动到账。",
		"plans":          "请选择套餐：",
		"plan.unknown":   "该套餐不可用。",
		"pool.empty":     "暂时没有可用的收款地址，请稍后再试。",
		"resend.none":    "没有找到可以重发邀请链接的有效会员。",
		"error":          "出错了，请稍后再试。",
		"start":          "欢迎！本机器人出售付费频道的访问权限，使用 USDT (TRC-20) 结算。\n\n/plans — 购买或续费会员\n/status — 查询会员状态\n/resend — 重发邀请链接",
	},
}

func msg(lang, key string, args ...any) string {
	table, ok := messages[lang]
	if !ok {
		table = messages["en"]
	}
	tpl, ok := table[key]
	if !ok {
		tpl = messages["en"][key]
	}
	if len(args) == 0 {
		return tpl
	}
	return fmt.Sprintf(tpl, args...)
}
