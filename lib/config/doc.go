// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the receiver's YAML configuration.
//
// Configuration comes from at most one file, named by the
// HL7INGEST_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). Keys the file omits keep the values from
// [Default]; with no file at all the defaults apply unchanged. The
// command layers explicitly set flags on top of the result.
//
// Path fields (storage.directory, log.file, status.socket_path) expand
// ${HOME} and ${VAR:-default} after loading. [Config.Validate] reports
// every invalid field at once through errors.Join.
//
// This package depends on no other hl7ingest packages.
package config
