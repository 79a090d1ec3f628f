//go:build e2e

package e2e

import (
	"fmt"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/text/encoding/unicode"

	fakesftp "github.com/JSchillinger/fake-sftp-server-lambda"
)

func dialFixture(port int, user, password string) (*sftp.Client, func(), error) {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	conn, err := ssh.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port), config)
	if err != nil {
		return nil, nil, err
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return client, func() {
		_ = client.Close()
		_ = conn.Close()
	}, nil
}

var _ = Describe("Fake SFTP server fixture", func() {
	var server *fakesftp.Server

	BeforeEach(func() {
		server = fakesftp.New(GinkgoTB())
	})

	Context("when testing code that reads files", func() {
		It("serves seeded text files to a real client", func() {
			Expect(server.PutFileString("/directory/file.txt", "content of file", unicode.UTF8)).To(Succeed())

			client, done, err := dialFixture(server.Port(), "any-user", "any-password")
			Expect(err).NotTo(HaveOccurred())
			defer done()

			f, err := client.Open("/directory/file.txt")
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()

			data, err := io.ReadAll(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("content of file"))
		})

		It("serves seeded binary files to a real client", func() {
			content := []byte{0xDE, 0xAD, 0xBE, 0xEF}
			Expect(server.PutFile("/directory/file.bin", content)).To(Succeed())

			client, done, err := dialFixture(server.Port(), "u", "p")
			Expect(err).NotTo(HaveOccurred())
			defer done()

			f, err := client.Open("/directory/file.bin")
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()

			data, err := io.ReadAll(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(content))
		})
	})

	Context("when testing code that writes files", func() {
		It("exposes client uploads through GetFileContent", func() {
			client, done, err := dialFixture(server.Port(), "uploader", "pw")
			Expect(err).NotTo(HaveOccurred())
			defer done()

			Expect(client.MkdirAll("/outbox")).To(Succeed())
			f, err := client.Create("/outbox/report.txt")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.Write([]byte("quarterly numbers"))
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Close()).To(Succeed())

			content, err := server.GetFileContentString("/outbox/report.txt", unicode.UTF8)
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal("quarterly numbers"))
		})

		It("overwrites on repeated uploads", func() {
			client, done, err := dialFixture(server.Port(), "u", "p")
			Expect(err).NotTo(HaveOccurred())
			defer done()

			for _, content := range []string{"first", "second"} {
				f, err := client.Create("/twice.txt")
				Expect(err).NotTo(HaveOccurred())
				_, err = f.Write([]byte(content))
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Close()).To(Succeed())
			}

			got, err := server.GetFileContent("/twice.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(got)).To(Equal("second"))
		})
	})

	Context("authentication", func() {
		It("accepts arbitrary credentials by default", func() {
			for _, creds := range [][2]string{{"alice", "a"}, {"bob", ""}, {"", "x"}} {
				client, done, err := dialFixture(server.Port(), creds[0], creds[1])
				Expect(err).NotTo(HaveOccurred())
				_, err = client.ReadDir("/")
				Expect(err).NotTo(HaveOccurred())
				done()
			}
		})

		It("rejects unregistered users once a user is added", func() {
			server.AddUser("alice", "secret")

			client, done, err := dialFixture(server.Port(), "alice", "secret")
			Expect(err).NotTo(HaveOccurred())
			defer done()
			_, err = client.ReadDir("/")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = dialFixture(server.Port(), "mallory", "guess")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("isolation", func() {
		It("starts every test with an empty filesystem", func() {
			entries, err := fsEntries(server)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())

			Expect(server.PutFile("/marker.txt", []byte("x"))).To(Succeed())
		})
	})
})

func fsEntries(server *fakesftp.Server) ([]string, error) {
	client, done, err := dialFixture(server.Port(), "probe", "probe")
	if err != nil {
		return nil, err
	}
	defer done()

	infos, err := client.ReadDir("/")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}
