package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "scopesrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:  ":8000",
		Nodes: []ObjSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `scopesrv communicates with bench oscilloscopes and exposes an HTTP
interface to them.  This enables a server-client architecture, and the
clients can leverage the excellent HTTP libraries for any programming
language.

Usage:
	scopesrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `scopesrv is configured via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration, the server will start with no instrument
routes; only /endpoints will respond.

No two nodes can share an Endpoint.

Node types, case insensitive:
- scope (aliases: mxo, mxo44)
	R&S MXO-series oscilloscope over TCP.  Addr is host:port,
	typically port 5025.  Routes cover channels, trigger, timebase,
	acquisition, waveform capture, the function generator, and
	arbitrary waveform upload.
- scope-usb
	The same instrument over USBTMC.  Addr is ignored; the first
	matching device is used.
- scope-serial
	The same instrument over RS232.  Addr is the device path, e.g.
	/dev/ttyUSB0.  Baud defaults to 115200.
- generator (alias: wgen)
	Only the function generator routes of a scope at Addr.

Waveforms captured over HTTP can be archived: set Data.Dir to write
each capture as CSV, and Data.Index to a sqlite file to keep a
queryable record of what was captured and where it lives.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("scopesrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	mux, err := BuildMux(c)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
