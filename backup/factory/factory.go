package factory

import "log"

var constructors = make(map[string]BackupStorageConstructor)

// RegisterBackupStorage adds a backend constructor. Called from init in
// the provider packages.
func RegisterBackupStorage(constructor BackupStorageConstructor) {
	backend := constructor()
	if backend == nil {
		panic("backup storage constructor returned nil")
	}
	if _, exists := constructors[backend.GetName()]; exists {
		log.Println("Backup storage already registered: " + backend.GetName())
	}
	constructors[backend.GetName()] = constructor
}

func GetConstructor(name string) (BackupStorageConstructor, bool) {
	constructor, exists := constructors[name]
	return constructor, exists
}

func GetAllBackendNames() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	return names
}
