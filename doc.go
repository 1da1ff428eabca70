// Package ioc provides a reflection-based dependency injection container for Go.
//
// A Container maps a service identity (a reflect.Type plus an optional
// comparable tag) to a registration, builds instances through a constructor
// catalogue, and detects circular dependencies while it resolves.
//
// # Features
//
//   - Singleton and transient lifecycles
//   - Tagged registrations for several implementations of one service
//   - Best-constructor selection with parameter auto-completion
//   - Open generic registrations
//   - Field injection through `inject` struct tags
//   - Circular dependency detection with the full request chain
//   - Registration events, service providers and a default container
//   - Thread-safe resolution under a single container lock
//
// # Quick Start
//
// Create a container and register services:
//
//	c := ioc.New()
//	ioc.RegisterType[Logger, *ConsoleLogger](c)
//	logger, err := ioc.Resolve[Logger](c)
//
// # Constructors
//
// Constructors are plain functions added to the type factory. The factory
// picks the constructor with the most parameters it can satisfy:
//
//	c.Factory().AddConstructor(NewUserService)              // func(Logger, Database) *UserService
//	c.Factory().AddConstructor(NewUserServiceWithCache, ioc.Preferred())
//
// Struct types without constructors are built from their zero value.
//
// # Lifecycles
//
// Singleton - one shared instance, created on first resolution (default):
//
//	ioc.RegisterType[Cache, *MemoryCache](c)
//
// Transient - a new instance each time:
//
//	ioc.RegisterType[Handler, *RequestHandler](c, ioc.AsTransient())
//
// # Tags
//
//	ioc.RegisterType[Database, *PostgresDB](c, ioc.WithTag("primary"))
//	ioc.RegisterType[Database, *RedisDB](c, ioc.WithTag("cache"))
//	db, _ := ioc.ResolveTagged[Database](c, "primary")
//
// # Field Injection
//
//	type UserController struct {
//	    Logger Logger   `inject:""`
//	    Cache  Cache    `inject:"optional"`
//	    DB     Database `inject:"tag=primary"`
//	}
//
// # Late-bound Registrations
//
// Constructors and produce callbacks receive a DependencyResolver bound to
// the resolution in flight and must resolve dependencies through it:
//
//	ioc.RegisterFunc(c, func(r ioc.DependencyResolver) (*Connection, error) {
//	    cfg, err := r.Resolve(ioc.TypeOf[*Config](), nil)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return Dial(cfg.(*Config).DSN)
//	})
//
// # Errors
//
// Every error matches a sentinel with errors.Is: ErrTypeNotRegistered,
// ErrInvalidRegistration, ErrCircularDependency, ErrConstructionFailed and
// ErrArgumentInvalid.
package ioc
