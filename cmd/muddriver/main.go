package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/limpingninja/ci2go/internal/driver"
	"github.com/limpingninja/ci2go/internal/efun"
	"github.com/limpingninja/ci2go/internal/mlog"
)

const banner = `ci2go mud driver`

var (
	f_lib      = flag.String("lib", "./lib", "path to the script library root")
	f_save     = flag.String("save", "./save/world.o", "path to the world save file")
	f_port     = flag.Int("port", 4000, "telnet port to listen on")
	f_maxconns = flag.Int("maxconns", 256, "maximum simultaneous connections")
	f_boot     = flag.String("boot", "/secure/master.c", "master object path")
	f_login    = flag.String("login", "/obj/login.c", "object cloned for each new connection")
	f_reset    = flag.Duration("reset", 15*time.Minute, "reset() pass interval")
	f_cleanup  = flag.Duration("cleanup", time.Minute, "clean_up() pass interval")
	f_tick     = flag.Duration("tick", 250*time.Millisecond, "main loop tick interval")
	f_restore  = flag.Bool("restore", false, "restore the world from -save before starting")
	f_verbose  = flag.Bool("v", false, "enable debug logging")
	f_version  = flag.Bool("version", false, "print the version and exit")
	f_attach   = flag.Bool("attach", false, "attach a local admin console to the master object, instead of starting the listener")
)

func usage() {
	fmt.Println(banner)
	fmt.Println("usage: muddriver [option]...")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *f_version {
		fmt.Println("muddriver 1.0")
		return
	}

	if *f_verbose {
		mlog.SetLevel(mlog.DEBUG)
	}

	cfg := driver.DefaultConfig()
	cfg.LibBase = *f_lib
	cfg.SaveFile = *f_save
	cfg.Port = *f_port
	cfg.MaxConns = *f_maxconns
	cfg.BootObject = *f_boot
	cfg.LoginObject = *f_login
	cfg.ResetPeriod = *f_reset
	cfg.CleanupEvery = *f_cleanup

	d, err := driver.New(cfg)
	if err != nil {
		mlog.Fatalf("muddriver: %v", err)
		os.Exit(1)
	}

	suite := efun.New(d, d.FS, d.Conns, d.Password)
	d.RegisterEfuns(suite.Table())

	if *f_restore {
		if err := d.Restore(cfg.SaveFile); err != nil {
			mlog.Warnf("muddriver: restoring %s: %v", cfg.SaveFile, err)
		}
	} else {
		h, err := d.Clone(cfg.BootObject)
		if err != nil {
			mlog.Fatalf("muddriver: booting master object %s: %v", cfg.BootObject, err)
			os.Exit(1)
		}
		d.MasterObj = h
		if obj, ok := d.Objects.Get(h); ok {
			obj.Privileged = true
		}
	}

	fmt.Println(banner)

	if *f_attach {
		runAttachConsole(d)
		return
	}

	if err := d.Listen(); err != nil {
		mlog.Fatalf("muddriver: listening on port %d: %v", cfg.Port, err)
		os.Exit(1)
	}
	mlog.Infof("muddriver: listening on :%d, library %s", cfg.Port, cfg.LibBase)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		mlog.Warnln("muddriver: caught interrupt, shutting down")
		d.Shutdown()
	}()

	d.Run(*f_tick)

	if err := d.Save(cfg.SaveFile); err != nil {
		mlog.Errorf("muddriver: saving %s: %v", cfg.SaveFile, err)
	}
}

// runAttachConsole is the single-process analogue of the teacher's
// -attach remote CLI: since this driver has no separate meshage/client
// protocol, "attaching" means reading lines from a local liner prompt
// and running each one synchronously against the master object's command
// dispatch, exactly as a telnet-connected admin's input would be — minus
// the socket.
func runAttachConsole(d *driver.Driver) {
	if !d.MasterObj.Valid() {
		mlog.Fatalf("muddriver: -attach requires a booted master object")
		return
	}

	input := liner.NewLiner()
	defer input.Close()
	input.SetCtrlCAborts(true)

	lastSeen := len(d.Log.Dump())
	for {
		line, err := input.Prompt("mud> ")
		if err != nil {
			break
		}
		if line == "" {
			continue
		}
		input.AppendHistory(line)
		if line == "quit" || line == "exit" {
			break
		}
		d.ExecuteCommand(d.MasterObj, line)
		dump := d.Log.Dump()
		if lastSeen < len(dump) {
			for _, l := range dump[lastSeen:] {
				fmt.Println(l)
			}
		}
		lastSeen = len(dump)
	}
}
