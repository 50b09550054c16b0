package main

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/inngest/inngestgo"
)

var semver = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z-.]+)?$`)

func main() {
	v := inngestgo.SDKVersion
	if strings.HasPrefix(v, "v") {
		// We add the 'v' prefix in the tag elsewhere, so we don't want it in
		// the version const.
		log.Fatal("Version should not start with 'v'")
	}

	if !semver.MatchString(v) {
		log.Fatalf("Version is not a valid semantic version: %s", v)
	}
	fmt.Print(v)
}
