// Package config defines the format-agnostic configuration model for a
// product family: its designation prefixes, component categories, flat
// pattern matching rules, settle timing and the derived-variable rule table.
// It also defines the in-memory CAD fixture model used by the simulated
// document session.
//
// Concrete loaders, such as the HCL one, live in separate packages.
package config
