// Package events defines the domain events published on the internal bus.
package events
