package migration

import (
	"fmt"
	"os"

	"github.com/forceu/rangeupload/internal/configuration/database"
	"github.com/forceu/rangeupload/internal/configuration/database/dbabstraction"
)

// Flags contains the source and destination url of a migration
type Flags struct {
	Source      string
	Destination string
}

// Do checks the passed flags for a migration and then executes it
func Do(flags Flags) {
	oldDb, err := database.ParseUrl(flags.Source, true)
	if err != nil {
		fmt.Println("Error: " + err.Error())
		osExit(1)
		return
	}
	newDb, err := database.ParseUrl(flags.Destination, false)
	if err != nil {
		fmt.Println(err.Error())
		osExit(2)
		return
	}
	fmt.Printf("Migrating %s database %s to %s database %s\n", getType(oldDb.Type), oldDb.HostUrl, getType(newDb.Type), newDb.HostUrl)
	count, err := database.Migrate(oldDb, newDb)
	if err != nil {
		fmt.Println("Error: " + err.Error())
		osExit(3)
		return
	}
	fmt.Printf("Migrated %d upload sessions\n", count)
}

func getType(input int) string {
	switch input {
	case dbabstraction.TypeSqlite:
		return "SQLite"
	case dbabstraction.TypeRedis:
		return "Redis"
	}
	return "Invalid"
}

// Declared for testing
var osExit = os.Exit
