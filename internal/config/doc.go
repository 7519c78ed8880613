// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config manages polychat configuration.
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (POLYCHAT_*)
//   - ~/.polychat/config.toml
//   - ~/.polychat/config.json
//   - Built-in defaults
package config
