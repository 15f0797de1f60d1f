// Package chat contains the Twitch IRC bot that fronts the trivia engine.
//
// The bot joins the configured channels and routes traffic two ways:
//   - "!trivia [N]" and "!trivia clear" commands from the broadcaster or a
//     moderator create or drop game requests via the scheduler.
//   - While a game is live on a channel, every other message is submitted as
//     a candidate answer.
//
// The Bot also implements the scheduler's output sink, so prompts and
// results are announced back into the same channel.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes. If TWITCH_OAUTH_TOKEN is not provided, the
// stored token for provider "twitch" from the oauth_tokens table is reused.
package chat
