// Package domain models CenSoc mortality microdata and the monthly period
// series derived from it.
//
// # Data Source
//
// CenSoc links the 1940 full-count census to two federal mortality sources:
//
//	CenSoc-Numident: Social Security Numident death records, both sexes,
//	                 deaths 1988–2005 with high coverage.
//	CenSoc-DMF:      Death Master File records, men only, same coverage window.
//
// The upstream loader publishes one flat JSON object per linked record to the
// Kafka source topic, keeping CenSoc column names and string values.
//
// # CenSoc Column Conventions
//
//	HISTID     census person identifier (opaque, may be empty in extracts)
//	byear      birth year, bmonth birth month (1–12)
//	dyear      death year, dmonth death month (1–12)
//	death_age  age at death in whole years; derived from birth/death dates
//	           when the column is empty
//	sex        "1"/"2" in Numident, "male"/"female" in cleaned extracts;
//	           absent in DMF, which only contains men
//	weight     post-stratification weight aligning the linked sample to the
//	           Human Mortality Database totals
//	statefip   state of residence in 1940 (FIPS code or postal abbreviation)
//	incwage    1940 wage income; 999998 and 999999 are the IPUMS
//	           missing/NIU sentinels
//
// # Strata
//
// Period series are built per category. A category is a (sex, age group)
// pair collapsed to the dimensions of the requested [Strata]; "total" uses a
// single category for the whole population.
//
// # Undefined Values
//
// Derived period fields (moving total, expected count, variation) are
// pointers. A nil pointer means "no data" for that period and is omitted
// from JSON output; it is never encoded as zero.
package domain
