// Package sim holds the built-in simulations and the registry the worker
// creates them from.
package sim
