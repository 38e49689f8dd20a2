// Package events provides authcore.EventBus implementations.
package events
