/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mikelane/ttlsweeper/test/utils"
)

var _ = Describe("ttlsweeper --once", func() {
	var (
		root       string
		configPath string
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		configPath = filepath.Join(GinkgoT().TempDir(), "sweeper.yaml")
		config := fmt.Sprintf("apiVersion: config.ttlsweeper.io/v1alpha1\nkind: SweeperConfiguration\npathsToWatch:\n  - %s\n", root)
		Expect(os.WriteFile(configPath, []byte(config), 0o600)).To(Succeed())
	})

	It("leaves fresh and unmarked directories alone", func() {
		Expect(utils.MakeDirs(root, "ttl=1d", "ttl=5min", "cache-ttl=1min", "nested/ttl=1min")).To(Succeed())

		// #nosec G204 -- binary built by the suite
		cmd := exec.CommandContext(context.Background(), binary, "--config", configPath, "--once")
		output, err := utils.Run(cmd)
		Expect(err).NotTo(HaveOccurred(), output)

		entries, err := os.ReadDir(root)
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		Expect(names).To(ConsistOf("ttl=1d", "ttl=5min", "cache-ttl=1min", "nested"))
	})

	It("logs each cycle summary", func() {
		// #nosec G204 -- binary built by the suite
		cmd := exec.CommandContext(context.Background(), binary, "--config", configPath, "--once", "--zap-devel")
		output, err := utils.Run(cmd)
		Expect(err).NotTo(HaveOccurred(), output)
		Expect(output).To(ContainSubstring("Cleanup pass finished"))
	})

	It("exits non-zero when a watched root is missing", func() {
		Expect(os.RemoveAll(root)).To(Succeed())

		// #nosec G204 -- binary built by the suite
		cmd := exec.CommandContext(context.Background(), binary, "--config", configPath, "--once")
		output, err := utils.Run(cmd)
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("cleanup cycle finished with failures"))
		lines := utils.GetNonEmptyLines(output)
		Expect(lines).NotTo(BeEmpty())
	})
})
