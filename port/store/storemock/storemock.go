// Package storemock provide a pregenerated gomock file for the store.Driver.
// The primary goal for this pkg to test rainy paths and "no store access" guarantees,
// which is more complicated to properly set up using real implementations.
package storemock

//go:generate mockgen -package storemock -destination MockDriver.go go.llib.dev/aggregate/port/store Driver
