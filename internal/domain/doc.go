// Package domain defines the core entities shared across services:
// pipeline deals, lead activities, automation rules, email campaigns,
// campaign sends, and mailbox connections.
//
// Types here carry no behavior beyond validation and (de)serialization.
// Business logic lives in the service packages (automation, campaign,
// audience, mail) which depend on domain, never the other way around.
package domain
