package main

import (
	"strconv"
	"strings"

	"kernos/pkg/loader"
	"kernos/pkg/ulib"
)

// builtins are the user programs linked into the boot image.
var builtins = map[string]func(e *ulib.Env, argv []string) int{
	"echo": echoMain,
	"cat":  catMain,
	"cp":   cpMain,
	"rm":   rmMain,
	"sh":   shMain,
	"halt": haltMain,
}

func registerPrograms(l *loader.Loader) {
	for name, main := range builtins {
		l.Register(name, ulib.Program(main))
	}
}

func echoMain(e *ulib.Env, argv []string) int {
	e.Puts(strings.Join(argv[1:], " ") + "\n")
	return 0
}

// copyFD copies from fd to out until end of file.
func copyFD(e *ulib.Env, fd, out int) bool {
	buf := make([]byte, 256)
	for {
		n := e.Read(fd, buf)
		if n < 0 {
			return false
		}
		if n == 0 {
			return true
		}
		if e.Write(out, buf[:n]) != n {
			return false
		}
	}
}

func catMain(e *ulib.Env, argv []string) int {
	status := 0
	for _, name := range argv[1:] {
		fd := e.Open(name)
		if fd < 0 {
			e.Puts("cat: " + name + ": cannot open\n")
			status = 1
			continue
		}
		if !copyFD(e, fd, ulib.Stdout) {
			status = 1
		}
		e.Close(fd)
	}
	return status
}

func cpMain(e *ulib.Env, argv []string) int {
	if len(argv) != 3 {
		e.Puts("usage: cp src dst\n")
		return 2
	}
	src := e.Open(argv[1])
	if src < 0 {
		e.Puts("cp: " + argv[1] + ": cannot open\n")
		return 1
	}
	defer e.Close(src)

	if !e.Create(argv[2], uint32(e.Filesize(src))) {
		e.Puts("cp: " + argv[2] + ": cannot create\n")
		return 1
	}
	dst := e.Open(argv[2])
	if dst < 0 {
		return 1
	}
	defer e.Close(dst)
	if !copyFD(e, src, dst) {
		return 1
	}
	return 0
}

func rmMain(e *ulib.Env, argv []string) int {
	status := 0
	for _, name := range argv[1:] {
		if !e.Remove(name) {
			e.Puts("rm: " + name + ": cannot remove\n")
			status = 1
		}
	}
	return status
}

func haltMain(e *ulib.Env, argv []string) int {
	e.Halt()
	return 0
}

// readLine reads one line from the console. It reports false at end of
// input with nothing read.
func readLine(e *ulib.Env) (string, bool) {
	var line []byte
	b := make([]byte, 1)
	for {
		if e.Read(ulib.Stdin, b) != 1 {
			return string(line), len(line) > 0
		}
		if b[0] == '\n' {
			return string(line), true
		}
		line = append(line, b[0])
	}
}

// shMain runs each input line as a command and waits for it.
func shMain(e *ulib.Env, argv []string) int {
	for {
		e.Puts("$ ")
		line, ok := readLine(e)
		if !ok {
			return 0
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit":
			return 0
		case strings.HasPrefix(line, "exit "):
			n, err := strconv.Atoi(strings.TrimSpace(line[5:]))
			if err != nil {
				e.Puts("sh: exit: bad status\n")
				continue
			}
			return n
		}

		pid := e.Exec(line)
		if pid < 0 {
			e.Puts("sh: " + line + ": exec failed\n")
			continue
		}
		if status := e.Wait(pid); status != 0 {
			e.Puts("sh: [" + strconv.Itoa(status) + "]\n")
		}
	}
}
