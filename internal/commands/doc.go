// Package commands implements the chat command surface of the bot:
// manual scrapes, the autoscrape toggle, subscriptions and status.
package commands
