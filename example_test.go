package ioc_test

import (
	"errors"
	"fmt"

	ioc "github.com/toutaio/toutago-ioc"
	"github.com/toutaio/toutago-ioc/logger"
)

type Greeter interface {
	Greet() string
}

type SimpleGreeter struct{}

func (g *SimpleGreeter) Greet() string {
	return "Hello, World!"
}

type Mailer struct {
	Greeter Greeter
	From    string
}

func NewMailer(from string, g Greeter) *Mailer {
	return &Mailer{Greeter: g, From: from}
}

type Node struct{ Next *Node }

func NewNode(next *Node) *Node { return &Node{Next: next} }

func ExampleNew() {
	c := ioc.New(ioc.WithLogger(logger.Discard()))
	fmt.Println(ioc.IsRegisteredType[*ioc.Container](c))
	// Output: true
}

func ExampleContainer_Register() {
	c := ioc.New(ioc.WithLogger(logger.Discard()))
	_ = c.Register(ioc.TypeOf[Greeter](), ioc.ImplementedBy(ioc.TypeOf[*SimpleGreeter]()))

	g, _ := ioc.Resolve[Greeter](c)
	fmt.Println(g.Greet())
	// Output: Hello, World!
}

func ExampleTypeFactory_CreateInstanceWithArgsAndAutoCompletion() {
	c := ioc.New(ioc.WithLogger(logger.Discard()))
	_ = ioc.RegisterType[Greeter, *SimpleGreeter](c)
	_ = c.Factory().AddConstructor(NewMailer)

	m, _ := ioc.CreateInstance[*Mailer](c, "ops@example.com")
	fmt.Println(m.From, "/", m.Greeter.Greet())
	// Output: ops@example.com / Hello, World!
}

func ExampleCircularDependencyError() {
	c := ioc.New(ioc.WithLogger(logger.Discard()))
	_ = c.Factory().AddConstructor(NewNode)

	_, err := ioc.Resolve[*Node](c)

	var cycle *ioc.CircularDependencyError
	fmt.Println(errors.As(err, &cycle), len(cycle.Chain))
	// Output: true 2
}
