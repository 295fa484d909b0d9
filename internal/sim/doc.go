// Package sim runs the fixed-step world that carries simulated sensors.
//
// A World owns the scene, one vehicle and its sensors. Each Step advances
// simulation time by a fixed tick, moves the vehicle, ticks every sensor
// and then every hook (recorders, stream forwarders, serial emitters). A
// Runner drives Step either against a wall clock or as fast as possible.
package sim
