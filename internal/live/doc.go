// Package live coordinates with a running workspace service during an upgrade.
//
// A Connector holds the run's single privileged connection, dialed on first
// use and released with a force-close once the upgrade phase ends. When no
// connection was ever opened, HTTPNotifier asks the service to force-close the
// workspace through its manage endpoint instead.
//
// The control channel is the gRPC service coven.migrate.v1.WorkspaceControl.
// Its messages are google.protobuf.Struct values, so the service descriptor
// is declared by hand rather than generated. ControlServer is the server side
// of that service, backed by the same domain adapters the migration uses.
package live
