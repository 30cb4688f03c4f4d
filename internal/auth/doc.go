// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package auth provides the CSRF protection layer for the HTTP surface.

Viewers are deliberately unauthenticated: anyone on the LAN (or whoever holds
a room link) may join, and admin rights hinge on the persisted fingerprint,
not on a login. What remains worth defending is the browser itself, so this
package implements session-bound CSRF:

  - Every browser gets an opaque sync_session cookie (HttpOnly,
    SameSite=Strict, 24h) on its first page load.
  - The server keeps one CSRF token per live session; /api/csrf-token hands
    it to scripts, the admin page embeds it during hydration.
  - State-changing requests must echo the token in the x-csrf-token header
    or a _csrf form field, compared in constant time against the session's
    stored token.

The token never travels in a cookie, so a forged cross-site request carries
the session cookie but cannot know the token that goes with it.

Sessions are held in memory only. A restart forgets them all, which costs
each browser one transparent cookie re-issue on its next GET.
*/
package auth
