// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package oauth orchestrates the connection lifecycle for every ad platform.

A connect attempt moves through:

	Initiated -> CallbackReceived -> SingleAccountResolved -> Connected
	                              \-> PendingSelection -> Connected

and can fail at any step. A connected account cycles between active and
refreshing, and moves to needs_reauth when the provider refuses to renew
it. needs_reauth is terminal until the user connects again.

The initiate step keeps nothing server-side. The OAuth state is encrypted
with the codec and handed to the client, which returns it on the callback
next to the provider's state parameter. Both must match, the state must be
unexpired, and it must belong to the calling user and platform.

Per-platform differences are data, not branches:

  - providers.Lifecycle says how a platform renews tokens.
  - Policy says how conflicts and missing expiries are handled.

Every returned error is an *Error whose kind matches one of the Err*
sentinels with errors.Is. CodeOf and UserMessage give its stable code and
a message safe to show.
*/
package oauth
