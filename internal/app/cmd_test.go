package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "no args starts web server", args: nil, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "worker", args: []string{"worker"}, want: CommandWorker},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "unknown falls back to serve", args: []string{"notes"}, want: CommandServe},
		{name: "flags after subcommand ignored", args: []string{"worker", "--interval", "1h"}, want: CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

// サブコマンド名はDockerfileのCMDとdocker-composeのcommandから参照される。
func TestCommand_NamesMatchDeploymentFiles(t *testing.T) {
	for cmd, want := range map[Command]string{
		CommandServe:       "serve",
		CommandWorker:      "worker",
		CommandMigrate:     "migrate",
		CommandHealthcheck: "healthcheck",
	} {
		if string(cmd) != want {
			t.Errorf("Command = %q, want %q", cmd, want)
		}
	}
}
