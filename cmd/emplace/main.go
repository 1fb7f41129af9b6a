package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)
	_ = godotenv.Load()

	if isSubCommand("version") {
		versionMain()
		return
	}

	config, err := parseConfig(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(NewInstallApp(config).Run())
}

func isSubCommand(name string) bool {
	return len(os.Args) > 1 && os.Args[1] == name
}

func versionMain() {
	fmt.Printf("emplace [%s]\n", ldflagsSoftwareVersion)
}

var ldflagsSoftwareVersion = "debug"
