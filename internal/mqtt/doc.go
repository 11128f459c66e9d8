// Package mqtt mirrors the assistant onto an MQTT broker. Chatur
// appears as a Home Assistant device whose sensors report the
// activation state, the last recognized intent and the number of
// commands handled today. A command topic accepts supervisor commands
// (start, stop, restart, status, shutdown) so a dashboard can restart a
// wedged microphone loop.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes retained discovery config payloads, a birth
// message ("online") to the availability topic, and re-subscribes to the
// command topic. A will message moves availability to "offline" on an
// unexpected disconnect.
package mqtt
