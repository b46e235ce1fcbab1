// Package checker defines the certificate check framework.
//
// Architecture overview:
//
//   - Checks implement the Check interface (Name + Check). A check receives a
//     decoded certificate and returns zero or more observations; it never
//     mutates the certificate.
//   - Run wraps a single invocation so that both returned errors and panics
//     surface as a *CheckError, which the scanner records as a
//     check_failure observation instead of aborting the batch.
//   - Registry keeps the available checks in registration order and resolves
//     the configured list of names into the ordered []Check the scanner runs.
//
// Built-in checks:
//
//   - ComplianceCheck: baseline CA/Browser Forum profile rules (signature and
//     key strength, validity period, serial number, subjectAltName and public
//     suffix coverage).
//   - ZLintCheck: the zlint rule set, run against a zcrypto parse of the DER.
//   - ExternalCheck: adapts community plugins that read a JSON request on
//     stdin and print a JSON array of observations.
package checker
