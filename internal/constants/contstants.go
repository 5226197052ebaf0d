// SPDX-License-Identifier: Apache-2.0
package constants

type AuthContext string

const (
	ContextCaller AuthContext = "_caller"
)
