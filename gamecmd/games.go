package gamecmd

import "fmt"

// Built-in game tables. Servers run as docker containers driven by a
// per-server systemd unit named server-<uuid>; stop goes through
// systemd so the unit state stays consistent.

func serverDir(p Params) string {
	return fmt.Sprintf("/opt/servers/%s", p.ServerUUID)
}

func systemdStart(p Params) string {
	return fmt.Sprintf("systemctl start server-%s", p.ServerUUID)
}

func systemdStop(p Params) string {
	return fmt.Sprintf("systemctl stop server-%s", p.ServerUUID)
}

func init() {
	Register(Definition{
		Name:        "RUST",
		DisplayName: "Rust",
		ServerDir:   serverDir,
		Start:       systemdStart,
		Stop:        systemdStop,
		Broadcast: func(p Params, message string) string {
			return fmt.Sprintf(`docker exec server-%s rcon say %q`, p.ServerUUID, message)
		},
	})

	Register(Definition{
		Name:        "SEVEN_DAYS_TO_DIE",
		DisplayName: "7 Days to Die",
		ServerDir:   serverDir,
		Start:       systemdStart,
		Stop:        systemdStop,
		Broadcast: func(p Params, message string) string {
			return fmt.Sprintf(`docker exec server-%s telnet-cmd say %q`, p.ServerUUID, message)
		},
	})

	Register(Definition{
		Name:        "ARK_EVOLVED",
		DisplayName: "ARK: Survival Evolved",
		ServerDir:   serverDir,
		Start:       systemdStart,
		Stop: func(p Params) string {
			// ARK wants a world save before the unit goes down.
			return fmt.Sprintf(
				"docker exec server-%s rcon saveworld; systemctl stop server-%s",
				p.ServerUUID, p.ServerUUID)
		},
		Broadcast: func(p Params, message string) string {
			return fmt.Sprintf(`docker exec server-%s rcon broadcast %q`, p.ServerUUID, message)
		},
	})

	Register(Definition{
		Name:        "MINECRAFT",
		DisplayName: "Minecraft",
		ServerDir:   serverDir,
		Start:       systemdStart,
		Stop:        systemdStop,
		Broadcast: func(p Params, message string) string {
			return fmt.Sprintf(`docker exec server-%s mc-send-to-console say %s`, p.ServerUUID, message)
		},
	})
}
