// Package tgui provides small helpers for Telegram HTML messages: escaping,
// inline formatting and conversion of the bot's neutral chat markup
// ("**bold**", "<@id>" mentions) into Telegram HTML.
package tgui
