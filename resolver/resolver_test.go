package resolver

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/mockserver/mock"
	"github.com/zerbitx/mockserver/parser"
	"github.com/zerbitx/mockserver/store"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const mocksDirectory = "../fixtures/mocks"

var _ = Describe("Resolver", func() {
	var (
		logger  *logrus.Logger
		watched []string
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(ioutil.Discard)
		watched = nil
	})

	resolve := func(method, url, body string, headers map[string]string) *mock.Response {
		r := New(store.New(mocksDirectory, store.WithLogger(logger)), WithLogger(logger), WithWatchedHeaders(watched))

		res, err := r.Resolve(mock.NewRequest(method, url, "", body, headers))
		Expect(err).ShouldNot(HaveOccurred())

		return res
	}

	Context("Exact directories", func() {
		It("Returns a valid response", func() {
			res := resolve("GET", "/test", "", nil)

			Expect(res.Matched).To(BeTrue())
			Expect(res.Status).To(Equal(200))
			Expect(res.Headers.Map()).To(Equal(map[string]interface{}{"Content-Type": "text"}))
			Expect(res.Body).To(Equal("Welcome!"))
			Expect(res.File).To(Equal("test/GET.mock"))
		})

		It("Returns Not Mocked when nothing matches", func() {
			res := resolve("GET", "/not-there", "", nil)

			Expect(res.Matched).To(BeFalse())
			Expect(res.Status).To(Equal(404))
			Expect(res.Body).To(Equal("Not Mocked"))
		})

		It("Handles trailing slashes without changing the mock file", func() {
			Expect(resolve("GET", "/test/", "", nil).File).To(Equal(resolve("GET", "/test", "", nil).File))
		})

		It("Maps / to the store root", func() {
			Expect(resolve("GET", "/", "", nil).Body).To(Equal("homepage"))
		})

		It("Maps multi-level urls", func() {
			Expect(resolve("GET", "/test1/test2", "", nil).Body).To(Equal("multi-level url"))
		})

		It("Combines identical header names", func() {
			res := resolve("GET", "/multiple-headers-same-name/", "", nil)
			Expect(res.Headers.Values("Set-Cookie")).To(Equal([]string{"one=1", "two=2", "three=3"}))
		})

		It("Handles methods other than GET and other status codes", func() {
			Expect(resolve("POST", "/return-200", "", nil).Status).To(Equal(200))
			Expect(resolve("GET", "/return-204", "", nil).Status).To(Equal(204))

			res := resolve("GET", "/return-empty-body", "", nil)
			Expect(res.Status).To(Equal(204))
			Expect(res.Body).To(BeEmpty())
		})

		It("Keeps line feeds", func() {
			res := resolve("GET", "/keep-line-feeds", "", nil)
			Expect(res.Body).To(Equal("ColumnA\tColumnB\tColumnC\nA1\tB1\tC1\nA2\tB2\tC2\nA3\tB3\tC3\n"))
			Expect(res.Headers.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
		})
	})

	Context("Query strings and bodies", func() {
		It("Prefers the query specific file", func() {
			Expect(resolve("GET", "/test?a=b", "", nil).Body).To(Equal("query a=b"))
		})

		It("Defaults to the bare file for unknown queries", func() {
			Expect(resolve("GET", "/test?a=c", "", nil).Body).To(Equal("Welcome!"))
		})

		It("Prefers the body specific file", func() {
			Expect(resolve("POST", "/return-200", "Hello=123", nil).Body).To(Equal("Hella"))
		})

		It("Defaults to the bare file for unknown bodies", func() {
			Expect(resolve("POST", "/return-200", "Hello=456", nil).Body).To(Equal("OK"))
		})

		It("Never probes names holding a slash", func() {
			Expect(resolve("POST", "/return-200", "../../GET", nil).Body).To(Equal("OK"))
		})
	})

	Context("Watched headers", func() {
		It("Tracks custom headers", func() {
			watched = []string{"authorization"}

			res := resolve("GET", "/request-headers", "", nil)
			Expect(res.Status).To(Equal(401))
			Expect(res.Body).To(Equal("not authorized"))

			res = resolve("GET", "/request-headers", "", map[string]string{"Authorization": "1234"})
			Expect(res.Status).To(Equal(200))
			Expect(res.Body).To(Equal("authorized"))

			Expect(resolve("GET", "/request-headers", "", map[string]string{"authorization": "5678"}).Body).To(Equal("admin authorized"))
		})

		It("Ignores headers that are not watched", func() {
			Expect(resolve("GET", "/request-headers", "", map[string]string{"Authorization": "1234"}).Status).To(Equal(401))
		})

		It("Falls back to the base method file", func() {
			watched = []string{"authorization"}

			Expect(resolve("GET", "/request-headers", "", map[string]string{"Authorization": "invalid"}).Status).To(Equal(401))
			Expect(resolve("POST", "/request-headers", "", map[string]string{"Authorization": "invalid"}).Status).To(Equal(404))
		})

		It("Looks for alternate combinations of headers", func() {
			watched = []string{"authorization", "x-foo"}

			Expect(resolve("PUT", "/request-headers", "", map[string]string{"Authorization": "12", "X-Foo": "Bar"}).Body).To(Equal("header both"))
			Expect(resolve("PUT", "/request-headers", "", map[string]string{"Authorization": "12", "X-Foo": "Baz"}).Body).To(Equal("header auth only"))
			Expect(resolve("PUT", "/request-headers", "", map[string]string{"Authorization": "78", "X-Foo": "Baz"}).Body).To(Equal("header both out-of-order"))
			Expect(resolve("PUT", "/request-headers", "", map[string]string{"Authorization": "45", "X-Foo": "Baz"}).Body).To(Equal("header x-foo only"))
			Expect(resolve("PUT", "/request-headers", "", map[string]string{"X-Foo": "Baz"}).Body).To(Equal("header x-foo only"))
		})

		It("Combines headers with query strings", func() {
			watched = []string{"authorization", "x-foo"}

			res := resolve("POST", "/request-headers?a=b", "", map[string]string{"Authorization": "12", "X-Foo": "Bar"})
			Expect(res.Body).To(Equal("that is a long filename"))
		})

		It("Returns 404 when no default file exists", func() {
			watched = []string{"authorization"}

			Expect(resolve("GET", "/return-200?a=c", "", map[string]string{"Authorization": "12"}).Status).To(Equal(404))
		})
	})

	Context("Wildcard directories", func() {
		It("Matches numeric and string slugs", func() {
			Expect(resolve("GET", "/wildcard/123", "", nil).Body).To(Equal("this always comes up\n"))
			Expect(resolve("GET", "/wildcard/abc", "", nil).Body).To(Equal("this always comes up\n"))
		})

		It("Matches wildcards in the middle of a path", func() {
			Expect(resolve("GET", "/wildcard-extended/123/foobar", "", nil).Body).To(Equal("wildcards-extended"))
			Expect(resolve("GET", "/wildcard-extended/abc/foobar/def/fizzbuzz", "", nil).Body).To(Equal("wildcards-extended-multiple"))
		})

		It("Prefers a more specific directory", func() {
			Expect(resolve("GET", "/wildcard/exact", "", nil).Body).To(Equal("more specific\n"))
		})

		It("Does not resolve a missing slug", func() {
			Expect(resolve("GET", "/wildcard/", "", nil).Status).To(Equal(404))
		})

		It("Needs the same number of segments", func() {
			Expect(resolve("GET", "/wildcard/abc/def", "", nil).Status).To(Equal(404))
		})
	})

	Context("Directives", func() {
		It("Handles imports", func() {
			res := resolve("GET", "/import", "", nil)
			Expect(res.Body).To(Equal("{\n    \"foo\": \"bar\"\n}"))

			res = resolve("GET", "/import?around=true", "", nil)
			Expect(res.Body).To(Equal("stuff\n{\n    \"foo\": \"bar\"\n}\naround me"))
		})

		It("Handles inline expressions", func() {
			var body map[string]string
			Expect(json.Unmarshal([]byte(resolve("GET", "/eval", "", nil).Body), &body)).To(Succeed())
			Expect(body).To(Equal(map[string]string{"foo": "bar"}))
		})

		It("Handles script imports", func() {
			var body map[string]string
			Expect(json.Unmarshal([]byte(resolve("GET", "/importexpr", "", nil).Body), &body)).To(Succeed())

			_, err := time.Parse(time.RFC3339, body["date"])
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("Varies script results with the request", func() {
			Expect(resolve("POST", "/importexpr", `{"foo":"123"}`, nil).Body).To(Equal(`{"prop":"bar"}`))
			Expect(resolve("POST", "/importexpr", `{"boo":"123"}`, nil).Body).To(Equal(`{"prop":"baz"}`))
		})

		It("Varies the status code with the request", func() {
			Expect(resolve("POST", "/headerimport", `{"baz":"123"}`, nil).Status).To(Equal(400))
			Expect(resolve("POST", "/headerimport", `{"foo":"123"}`, nil).Status).To(Equal(200))
		})

		It("Handles dynamic header values", func() {
			res := resolve("GET", "/dynamic-headers", "", nil)

			_, err := time.Parse(time.RFC3339, res.Headers.Get("X-Subject-Token"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Body).To(Equal("dynamic headers\n"))
		})

		It("Runs hooks and leaves unknown ones alone", func() {
			res := resolve("GET", "/hooks", "", nil)

			Expect(res.Headers.Get("X-Request-Id")).To(HaveLen(36))
			Expect(res.Body).To(MatchRegexp(`^created \d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z\nkept \{% nope\(\) %\}$`))
		})
	})

	Context("Response delay", func() {
		It("Reads the delay and hides the header", func() {
			res := resolve("GET", "/delay", "", nil)

			Expect(res.Delay).To(Equal(50 * time.Millisecond))
			Expect(res.Headers.Has(DelayHeader)).To(BeFalse())
			Expect(res.Headers.Get("Content-Type")).To(Equal("text/plain"))
		})

		It("Is zero without the header", func() {
			Expect(resolve("GET", "/test", "", nil).Delay).To(BeZero())
		})
	})

	Context("Broken mock files", func() {
		It("Returns the parse error", func() {
			r := New(store.New(mocksDirectory), WithLogger(logger))

			_, err := r.Resolve(mock.NewRequest("GET", "/broken", "", "", nil))

			var parseErr *parser.ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.File).To(Equal("broken/GET.mock"))
		})
	})

	It("Accepts a custom parser", func() {
		r := New(store.New(mocksDirectory), WithLogger(logger), WithParser(parser.New(nil)))

		res, err := r.Resolve(mock.NewRequest("GET", "/import", "", "", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(res.Body).To(Equal("#import './data.json';"))
	})
})
