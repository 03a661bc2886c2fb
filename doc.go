/*
Mirage replicates the state of game entities from an authoritative server to its clients.

Entities

An entity type is a list of field groups. Every group is a syncvar.Schema with its own sync direction:
who may write the fields (the server, the owning client or both) and who receives the changes
(the server, the owner, and the other observing clients). Only changed fields are sent, bit-packed,
once per sync interval.

	stats := mirage.NewSchema("Character").
		Field("health", syncvar.Uint(7)).
		Field("position", syncvar.Vector3(max, precision)).
		MustBuild()
	mirage.RegisterEntity("Character", stats)

Server and clients must register identical types. The server checks this with a registry fingerprint
sent when a client connects.

Hosts

A host runs one EntityManager and its transport (KCP or WebSocket) on a single main routine:

	h, err := mirage.NewServer(mirage.GetConfig())
	...
	h.Run(ctx)

Configuration

Mirage uses `mirage.ini` as the default config file.
*/
package mirage
