// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

/*
Package supervisor runs the long-lived parts of the posvault server under a
suture v4 supervision tree.

	RootSupervisor ("posvault")
	├── SchedulerSupervisor ("scheduler-layer")
	│   └── scheduler.TickerHost ("task-host")
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService ("http-server")

The layers restart independently: a panic in a backup run fired by the task
host never takes the HTTP API down, and a listener failure never stops
scheduled backups.

Supervisor events are logged through sutureslog, bridged onto zerolog with
logging.NewSlogLogger.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSchedulerService(host)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
