/*
Package cli provides helpers shared by the guardrails commands.

Errors carry an exit code. ExitCode maps any error returned by a command to
the process status, so scripts can tell a blocked text (exit 3) from a bad
configuration (exit 2) or a runtime failure (exit 1):

	if err := root.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}

Output formatting renders decisions and plans as text or JSON:

	f, err := cli.NewFormatter("json")
	if err != nil {
		return err
	}
	return f.FormatTo(os.Stdout, decision)

Batch runs report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(lines)))
	for i, line := range lines {
		// moderate line
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal handling covers graceful shutdown (SIGINT, SIGTERM) and policy
reload (SIGHUP):

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	reloads, stopReload := cli.NotifyReload()
	defer stopReload()
*/
package cli
