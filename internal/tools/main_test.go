package tools

import (
	"os"
	"testing"

	"zhitalk-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}
