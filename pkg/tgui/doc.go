// Package tgui holds small helpers for Telegram text: HTML escaping for
// ParseMode="HTML", rune-safe truncation, and list paging.
package tgui
