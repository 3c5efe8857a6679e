// Package flows holds the credential, second-factor and refresh orchestration
// behind the root Engine.
//
// Each Run function takes a dependency struct of plain functions and
// interfaces and returns a result carrying a failure kind. The engine maps
// kinds to public errors, audit events and metrics, so flows never decide
// what a caller is told.
//
// Flows keep no state between calls and do not import the root package.
package flows
