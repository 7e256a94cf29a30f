//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var binDir = "bin"

var Default = Build

var binaries = map[string]string{
	"payments-api":    "./cmd/api",
	"payments-worker": "./cmd/worker",
	"paymentctl":      "./cmd/paymentctl",
}

func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

func Test() error {
	return sh.RunV("go", "test", "./...", "-count=1")
}

// Build compiles every binary into bin/.
func Build() error {
	mg.Deps(Vet)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	env := map[string]string{"CGO_ENABLED": "0"}
	for name, pkg := range binaries {
		out := filepath.Join(binDir, name+exeSuffix())
		fmt.Println("Building:", out)
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", out, pkg); err != nil {
			return err
		}
	}
	return nil
}

func API() error {
	return sh.RunV("go", "run", "./cmd/api")
}

func Worker() error {
	return sh.RunV("go", "run", "./cmd/worker")
}

// CheckRates validates configs/rates.yaml.
func CheckRates() error {
	return sh.RunV("go", "run", "./cmd/paymentctl", "rates", "check", "--file", "configs/rates.yaml")
}

func Clean() error {
	return os.RemoveAll(binDir)
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
