// Package organizations holds the deployable governance templates. Each
// template declares its form fields, the chains it may be deployed on, any
// contracts that must exist before it is constituted, and a builder that
// turns form input plus deployed addresses into the constitute payload.
package organizations
