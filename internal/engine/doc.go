// Package engine is the context object of the environment machinery. An
// Engine owns one environment store, one named-environment registry and one
// field cache; independent engines share nothing.
//
// Units come from a Provider. They are parsed and populated on demand: a
// lookup that reads a named environment first asks the provider which units
// contribute to that name and populates those not loaded yet. Reparse and
// Dispose invalidate everything a unit contributed (registrations,
// environments, associations injected elsewhere and cached fields) while no
// lookup is running.
package engine
