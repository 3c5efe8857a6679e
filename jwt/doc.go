// Package jwt issues and verifies the signed token classes of the engine: access
// tokens carrying a claims snapshot and short-lived temporary tokens bridging
// password login and second-factor verification.
package jwt
