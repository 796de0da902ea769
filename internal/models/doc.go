// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package models defines the data structures shared across Adlink.

Key Components:

  - Platform: the supported ad platforms (google_ads, meta_ads, tiktok_ads)
  - Connection: a durable, owner-scoped link between a user and one ad account
  - PendingConnection: tokens held for up to 10 minutes while the user picks
    one of several accessible ad accounts
  - CandidateAccount: an ad account returned by a provider's account listing
  - OAuthState: the encrypted, client-held state of an in-flight consent flow
  - TokenSet: plaintext tokens returned by a provider; never persisted or logged

Connection and PendingConnection only ever carry token ciphertext. Plaintext
token material lives in TokenSet values for the duration of a single call.

Invariants:

  - At most one Connection exists per (UserID, Platform, ExternalAccountID).
  - Meta ad account ids are stored without the "act_" prefix.
  - A PendingConnection read after ExpiresAt is treated as expired and removed.
*/
package models
