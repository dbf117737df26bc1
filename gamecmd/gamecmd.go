// Package gamecmd maps game types onto the concrete shell commands the
// remote executor runs on a machine. Each game supplies small pure
// functions from server parameters to command strings, so the task
// dispatcher never switches on game type itself.
package gamecmd

import (
	"fmt"

	"github.com/zedfleet/zedfleet/common"
)

// Params is everything a command template may substitute. Fields are
// filled from the server row and the task payload.
type Params struct {
	ServerUUID      string
	Name            string
	Port            int
	QueryPort       int
	RconPort        int
	MaxPlayers      int
	GracefulSeconds int
}

// Definition is one game's command table.
type Definition struct {
	Name        string
	DisplayName string
	// ServerDir is the install root on the machine.
	ServerDir func(p Params) string
	Start     func(p Params) string
	Stop      func(p Params) string
	// Broadcast sends an in-game message to connected players; nil when
	// the game has no console channel.
	Broadcast func(p Params, message string) string
}

var definitions = map[string]Definition{}

// Register adds a game definition. Called from init in the per-game
// files; re-registering a name replaces the entry.
func Register(def Definition) {
	definitions[def.Name] = def
}

// Lookup returns the command table for a game type.
func Lookup(gameType string) (Definition, error) {
	def, ok := definitions[gameType]
	if !ok {
		return Definition{}, common.NotFoundf("game type %s", gameType)
	}
	return def, nil
}

func GameTypes() []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	return names
}

// BuildCommand resolves a lifecycle action to a shell command for the
// given game.
func BuildCommand(gameType, action string, p Params) (string, error) {
	def, err := Lookup(gameType)
	if err != nil {
		return "", err
	}
	switch action {
	case "start":
		return def.Start(p), nil
	case "stop":
		return def.Stop(p), nil
	case "restart":
		return def.Stop(p) + " && sleep 1 && " + def.Start(p), nil
	default:
		return "", common.InvalidStatef("no command template for action %q", action)
	}
}

// BackupCommand archives the server directory into the named tar.gz
// under the machine-local backup staging area. Game-independent.
func BackupCommand(gameType, name string, p Params) (string, error) {
	def, err := Lookup(gameType)
	if err != nil {
		return "", err
	}
	dir := def.ServerDir(p)
	staging := StagingPath(p.ServerUUID, name)
	return fmt.Sprintf(
		`mkdir -p /opt/backups/%s && cd %q && tar -czf %q . && stat -c%%s %q`,
		p.ServerUUID, dir, staging, staging), nil
}

// RestoreCommand unpacks a staged backup artifact over the server
// directory.
func RestoreCommand(gameType, name string, p Params) (string, error) {
	def, err := Lookup(gameType)
	if err != nil {
		return "", err
	}
	dir := def.ServerDir(p)
	staging := StagingPath(p.ServerUUID, name)
	return fmt.Sprintf(`mkdir -p %q && cd %q && tar -xzf %q`, dir, dir, staging), nil
}

// StagingPath is where backup artifacts sit on a machine before upload
// to (or after download from) the backup store.
func StagingPath(serverUUID, name string) string {
	return fmt.Sprintf("/opt/backups/%s/%s.tar.gz", serverUUID, name)
}
