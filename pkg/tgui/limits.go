package tgui

// Telegram allows 4096 characters per message and 1024 per caption, counted
// after entity parsing. Runes of the raw HTML are an upper bound for that;
// the message limit keeps some headroom below it.
const (
	MaxMessageLen = 4000
	MaxCaptionLen = 1024
)
