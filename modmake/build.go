package main

import (
	. "github.com/saylorsolutions/modmake"
)

const (
	barysshVersion = "0.1.0"
)

func main() {
	b := NewBuild()
	b.Generate().DependsOnRunner("tidy", "", Go().ModTidy())
	b.Test().Does(Go().TestAll())

	relay := NewAppBuild("baryssh", "cmd/baryssh", barysshVersion)
	relay.Build(func(gb *GoBuild) {
		gb.
			StripDebugSymbols().
			SetVariable("main", "version", barysshVersion).
			CgoEnabled(false)
	})
	// Relays usually run on small always-on boxes next to the service they front.
	for _, arch := range []string{"amd64", "arm64", "arm", "mipsle"} {
		relay.Variant("linux", arch)
	}
	relay.Variant("darwin", "arm64")
	relay.Variant("windows", "amd64")
	b.ImportApp(relay)

	b.Execute()
}
