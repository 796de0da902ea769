// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package validation validates decoded API request bodies with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata after first use and is safe for concurrent calls. Field names in
// messages are the JSON names the client sent, and the custom "platform" tag
// accepts the canonical platform keys.
//
//	type selectAccountRequest struct {
//	    PendingTokenID string `json:"pendingTokenId" validate:"required,uuid"`
//	    AccountID      string `json:"accountId" validate:"required,max=128"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondError(w, r, http.StatusBadRequest, verr.Code(), verr.Error())
//	    return
//	}
package validation
