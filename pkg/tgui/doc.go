// Package tgui holds helpers for Telegram HTML messages: escaped fragments
// and splitting text to the platform's size limits.
package tgui
