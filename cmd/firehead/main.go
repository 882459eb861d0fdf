package main

import (
	"log"
	"runtime"

	"github.com/fhengine/firehead"
	"github.com/fhengine/firehead/internal/config"
	"github.com/fhengine/firehead/internal/engine"
)

func main() {
	runtime.LockOSThread()

	if err := engine.Run(config.Default(), firehead.Assets); err != nil {
		log.Fatalln(err)
	}
}
