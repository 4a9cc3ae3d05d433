package main

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"kernos/pkg/console"
	"kernos/pkg/kernel"
	"kernos/pkg/loader"
	"kernos/pkg/process"
	"kernos/pkg/sysno"
	"kernos/pkg/ulib"
	"kernos/pkg/vfs/memfs"
)

func main() {
	fmt.Println("=== kernos Process Demo ===")
	fmt.Println()

	fs := memfs.New()
	con := console.New(nil)
	l := loader.New(nil)

	programs := map[string]func(e *ulib.Env, argv []string) int{
		"init":   initMain,
		"worker": workerMain,
		"bad":    badMain,
	}
	for name, main := range programs {
		l.Register(name, ulib.Program(main))
		if err := loader.Install(fs, name, loader.Image{Program: name}); err != nil {
			log.Fatalf("Failed to install %s: %v", name, err)
		}
	}
	fmt.Printf("Installed programs: %v\n", l.Programs())

	k, err := kernel.New(kernel.Config{FileSystem: fs, Console: con, Loader: l})
	if err != nil {
		log.Fatalf("Failed to create kernel: %v", err)
	}
	fmt.Printf("Booting kernel %s\n", k.BootID())

	status, err := k.Run(context.Background(), "init")
	if err != nil {
		log.Fatalf("Kernel stopped: %v", err)
	}

	fmt.Println("\n--- Console ---")
	fmt.Print(con.Output())
	fmt.Printf("\ninit exited with status %d\n", status)
}

// initMain starts workers, waits for each, and shows the failure cases.
func initMain(e *ulib.Env, argv []string) int {
	var pids []process.PID
	for i := 1; i <= 3; i++ {
		pid := e.Exec("worker " + strconv.Itoa(i*10))
		e.Puts("init: started worker pid " + strconv.Itoa(int(pid)) + "\n")
		pids = append(pids, pid)
	}

	total := 0
	for _, pid := range pids {
		status := e.Wait(pid)
		e.Puts("init: pid " + strconv.Itoa(int(pid)) + " -> " + strconv.Itoa(status) + "\n")
		total += status
	}

	e.Puts("init: second wait -> " + strconv.Itoa(e.Wait(pids[0])) + "\n")
	e.Puts("init: exec missing -> " + strconv.Itoa(int(e.Exec("missing"))) + "\n")
	e.Puts("init: bad pointer child -> " + strconv.Itoa(e.Wait(e.Exec("bad"))) + "\n")
	return total
}

func workerMain(e *ulib.Env, argv []string) int {
	n, _ := strconv.Atoi(argv[1])
	return int(e.Practice(int32(n)))
}

func badMain(e *ulib.Env, argv []string) int {
	e.Syscall(sysno.Open, 0)
	return 0
}
